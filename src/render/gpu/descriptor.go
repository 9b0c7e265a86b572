package gpu

import (
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

// Every set holds the transform uniform at binding 0 and the model texture
// at binding 1.
const (
	uniformBinding = 0
	samplerBinding = 1
)

func (d *Device) CreateDescriptorPool(sets int) (vulkan.DescriptorPool, error) {
	sizes := []vulkan.DescriptorPoolSize{
		{Type: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: uint32(sets)},
		{Type: vulkan.DescriptorTypeCombinedImageSampler, DescriptorCount: uint32(sets)},
	}
	info := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(sets),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vulkan.DescriptorPool
	if err := render.NewError("create descriptor pool", vulkan.CreateDescriptorPool(d.handle, &info, nil, &pool)); err != nil {
		return vulkan.DescriptorPool(vulkan.NullHandle), err
	}
	return pool, nil
}

// DestroyDescriptorPool also frees every set allocated from the pool.
func (d *Device) DestroyDescriptorPool(pool vulkan.DescriptorPool) {
	vulkan.DestroyDescriptorPool(d.handle, pool, nil)
}

func (d *Device) AllocateDescriptorSets(pool vulkan.DescriptorPool, layout vulkan.DescriptorSetLayout, count int) ([]vulkan.DescriptorSet, error) {
	layouts := make([]vulkan.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	info := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}
	sets := make([]vulkan.DescriptorSet, count)
	if err := render.NewError("allocate descriptor sets", vulkan.AllocateDescriptorSets(d.handle, &info, &sets[0])); err != nil {
		return nil, err
	}
	return sets, nil
}

func (d *Device) WriteDescriptorSet(set vulkan.DescriptorSet, uniform render.Buffer, texture render.Texture) {
	writes := []vulkan.WriteDescriptorSet{
		{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uniformBinding,
			DescriptorCount: 1,
			DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
			PBufferInfo: []vulkan.DescriptorBufferInfo{{
				Buffer: uniform.Handle,
				Range:  uniform.Size,
			}},
		},
		{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      samplerBinding,
			DescriptorCount: 1,
			DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vulkan.DescriptorImageInfo{{
				ImageLayout: vulkan.ImageLayoutShaderReadOnlyOptimal,
				ImageView:   texture.Image.View,
				Sampler:     texture.Sampler,
			}},
		},
	}
	vulkan.UpdateDescriptorSets(d.handle, uint32(len(writes)), writes, 0, nil)
}
